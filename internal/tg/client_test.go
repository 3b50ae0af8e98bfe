package tg

import "testing"

func TestSenderDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		sender Sender
		want   string
	}{
		{"first and last", Sender{Kind: SenderUser, FirstName: "Alice", LastName: "Smith"}, "Alice Smith"},
		{"first only", Sender{Kind: SenderUser, FirstName: "Alice"}, "Alice"},
		{"last only", Sender{Kind: SenderUser, LastName: "Smith"}, "Smith"},
		{"surrounding whitespace", Sender{Kind: SenderUser, FirstName: " Alice ", LastName: " Smith "}, "Alice Smith"},
		{"empty user", Sender{Kind: SenderUser}, ""},
		{"channel title", Sender{Kind: SenderChannel, Title: "News"}, "News"},
		{"unknown is never an error", Sender{Kind: SenderUnknown, FirstName: "ignored"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sender.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}
