package entity

type Status string

const (
	StatusSubmitted          Status = "submitted"
	StatusVerifying          Status = "verifying"
	StatusVerified           Status = "verified"
	StatusVerificationFailed Status = "verification_failed"
	StatusProcessingPayment  Status = "processing_payment"
	StatusPaymentInitiated   Status = "payment_initiated"
	StatusPaymentFailed      Status = "payment_failed"
	StatusEmailSent          Status = "email_sent"
	StatusCompleted          Status = "completed"
)

var progress = map[Status]int{
	StatusSubmitted:          0,
	StatusVerifying:          10,
	StatusVerified:           30,
	StatusVerificationFailed: 30,
	StatusProcessingPayment:  50,
	StatusPaymentInitiated:   70,
	StatusPaymentFailed:      70,
	StatusEmailSent:          90,
	StatusCompleted:          100,
}

// transitions lists the allowed next statuses. The *_failed -> in-progress
// edges are taken only when the broker retries the same stage.
var transitions = map[Status][]Status{
	StatusSubmitted:          {StatusVerifying},
	StatusVerifying:          {StatusVerified, StatusVerificationFailed},
	StatusVerificationFailed: {StatusVerifying},
	StatusVerified:           {StatusProcessingPayment},
	StatusProcessingPayment:  {StatusPaymentInitiated, StatusPaymentFailed},
	StatusPaymentFailed:      {StatusProcessingPayment},
	StatusPaymentInitiated:   {StatusEmailSent},
	StatusEmailSent:          {StatusCompleted},
}

func (s Status) Progress() int {
	return progress[s]
}

func (s Status) Valid() bool {
	_, ok := progress[s]

	return ok
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted
}
