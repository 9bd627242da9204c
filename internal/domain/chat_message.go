package domain

// ChatSender indicates who authored a transcript line.
type ChatSender string

const (
	SenderCustomer       ChatSender = "customer"
	SenderAutomatedAgent ChatSender = "automatedAgent"
	SenderHumanOperator  ChatSender = "humanOperator"
)

// ChatMessage is one line of a conversation transcript.
type ChatMessage struct {
	Sender    ChatSender
	Text      string
	Timestamp string
}
