package command

import (
	"reflect"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   CommandMsg
		wantOK bool
	}{
		{"refresh", CommandMsg{Name: Refresh, Args: []string{}}, true},
		{":sync", CommandMsg{Name: Refresh, Args: []string{}}, true},
		{"login me@example.test", CommandMsg{Name: Login, Args: []string{"me@example.test"}}, true},
		{"  Q  ", CommandMsg{Name: Quit, Args: []string{}}, true},
		{"launch", CommandMsg{}, false},
		{"", CommandMsg{}, false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if ok != tt.wantOK || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Parse(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestEnterEmitsCommand(t *testing.T) {
	m := New(80, 24)
	m.Focus()
	m.input.SetValue("new")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should emit a command")
	}
	if got, ok := cmd().(CommandMsg); !ok || got.Name != NewAddress {
		t.Errorf("cmd() = %#v", cmd())
	}
	if m.input.Value() != "" {
		t.Errorf("input not reset: %q", m.input.Value())
	}

	m.input.SetValue("bogus")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if _, ok := cmd().(UnknownCommandMsg); !ok {
		t.Errorf("cmd() = %#v, want UnknownCommandMsg", cmd())
	}
}
