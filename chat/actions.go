// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package chat

// Action is one of the four discrete user actions on the panel's
// action row. Only ActionNewConversation reaches the session core;
// the other three are acknowledged passthroughs.
type Action int

const (
	ActionAnalyze Action = iota
	ActionGraph
	ActionReport
	ActionNewConversation
)

func (a Action) String() string {
	switch a {
	case ActionAnalyze:
		return "analyze"
	case ActionGraph:
		return "graph"
	case ActionReport:
		return "report"
	case ActionNewConversation:
		return "new-conversation"
	default:
		return "unknown"
	}
}
