package domain

// OperatorRole enumerates console permissions.
type OperatorRole string

const (
	OperatorRoleReviewer OperatorRole = "REVIEWER"
	OperatorRoleViewer   OperatorRole = "VIEWER"
)

// Operator is a console account loaded from configuration.
type Operator struct {
	Username     string
	PasswordHash string
	Role         OperatorRole
}
