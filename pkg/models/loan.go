package models

type LoanStatus string

const (
	LoanPending LoanStatus = "pending"
	LoanActive  LoanStatus = "active"
	LoanClosed  LoanStatus = "closed"
)

type UserRef struct {
	ID           ID     `json:"id"`
	FullUsername string `json:"fullUsername,omitempty"`
}

type BookRef struct {
	ID    ID     `json:"id"`
	Title string `json:"title,omitempty"`
}

type Loan struct {
	ID         ID      `json:"id,omitempty"`
	LoanDate   *Date   `json:"loanDate"`
	LoanEnd    *Date   `json:"loanEnd"`
	ReturnDate *Date   `json:"returnDate"`
	User       UserRef `json:"user"`
	Book       BookRef `json:"book"`
	Accepted   bool    `json:"accepted"`
}

// Status derives the lifecycle stage: a return date closes the loan whatever
// the acceptance flag says.
func (l Loan) Status() LoanStatus {
	switch {
	case l.ReturnDate != nil && !l.ReturnDate.IsZero():
		return LoanClosed
	case l.Accepted:
		return LoanActive
	default:
		return LoanPending
	}
}

// LoansForUser keeps the loans whose embedded user matches userID, in order.
func LoansForUser(loans []Loan, userID ID) []Loan {
	mine := make([]Loan, 0)
	for _, l := range loans {
		if l.User.ID == userID {
			mine = append(mine, l)
		}
	}
	return mine
}

// NewLoanRequest builds the unaccepted loan a reader submits when borrowing.
// Dates are left for the backend to assign.
func NewLoanRequest(userID ID, book Book) Loan {
	return Loan{
		User:     UserRef{ID: userID},
		Book:     BookRef{ID: book.ID, Title: book.Title},
		Accepted: false,
	}
}
