package iso7816

// TRANSACTION:
// A Transaction represents the atomic unit of communication defined in
// ISO 7816-3: one Command APDU sent by the terminal, followed by one
// Response APDU sent back by the device.
//
// TRACE:
// A Trace is a chronological sequence of Transactions. It captures the full
// history of a logical operation. A single logical intent (e.g., "select the
// wallet applet") may result in multiple physical transactions due to the
// transport mechanisms handled by the Client (61XX GET RESPONSE, 6CXX
// re-send). In these cases, the Trace contains the entire conversation, and
// IsSuccess() evaluates the final outcome.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess checks if the transaction ended with a usable payload.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is a sequence of transactions (Command-Response pairs).
// It represents the full history of a logical exchange.
type Trace []Transaction

// Last returns the final transaction of the trace.
// Returns nil if the trace is empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the FINAL transaction in the trace was successful.
// This determines if the overall logical operation succeeded, regardless of
// intermediate transport statuses (like 61XX) in previous transactions.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}
