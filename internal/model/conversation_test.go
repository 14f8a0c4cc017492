package model

import "testing"

func TestApplyStatus(t *testing.T) {
	tests := []struct {
		name      string
		from      Conversation
		to        ConversationStatus
		want      ConversationStatus
		connected bool
	}{
		{"queue", Conversation{Status: StatusActive}, StatusWaitingAgent, StatusWaitingAgent, false},
		{"held by agent", Conversation{Status: StatusActive, IsAgentConnected: true}, StatusWaitingAgent, StatusActive, true},
		{"close disconnects", Conversation{Status: StatusActive, IsAgentConnected: true}, StatusClosed, StatusClosed, false},
		{"closed is final", Conversation{Status: StatusClosed}, StatusWaitingAgent, StatusClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.from
			c.ApplyStatus(tt.to)
			if c.Status != tt.want || c.IsAgentConnected != tt.connected {
				t.Errorf("got status=%s connected=%v, want %s %v", c.Status, c.IsAgentConnected, tt.want, tt.connected)
			}
		})
	}
}

func TestApplyAgent(t *testing.T) {
	c := Conversation{Status: StatusWaitingAgent, VisitorName: "Omar"}
	c.ApplyAgent(AgentAssignment{Connected: true, AgentID: "a1", AgentName: "Sara"})
	if !c.IsAgentConnected || c.AgentID != "a1" || c.Status != StatusActive || c.VisitorName != "Omar" {
		t.Errorf("join: %+v", c)
	}

	c.ApplyAgent(AgentAssignment{})
	if c.IsAgentConnected || c.AgentID != "" || c.Status != StatusActive {
		t.Errorf("leave: %+v", c)
	}

	closed := Conversation{Status: StatusClosed}
	closed.ApplyAgent(AgentAssignment{Connected: true, AgentID: "a1"})
	if closed.IsAgentConnected || closed.Status != StatusClosed {
		t.Errorf("join after close: %+v", closed)
	}
}

func TestApplyVisitorDetails(t *testing.T) {
	c := Conversation{VisitorName: "Omar", CurrentPage: "/", IsAgentConnected: true, AgentID: "a1"}
	if c.ApplyVisitorDetails(VisitorDetails{Name: "Omar", CurrentPage: "/"}) {
		t.Error("same values reported as a change")
	}
	if !c.ApplyVisitorDetails(VisitorDetails{Email: "omar@example.com", CurrentPage: "/tours"}) {
		t.Error("new values not reported")
	}
	if c.VisitorName != "Omar" || c.VisitorEmail != "omar@example.com" || c.CurrentPage != "/tours" || !c.IsAgentConnected {
		t.Errorf("got %+v", c)
	}
}
