package iso7816

import "fmt"

// Smart Tap Status Word Logic:
//
// While most Status Words (SW) are static 2-byte values (e.g., 0x9000), the
// wallet applet uses whole SW1 bands whose SW2 carries detail the terminal
// does not need to act on:
//
// 1. '91XX' (More Data): The command succeeded, but the response payload was
//    chunked. The remainder is retrieved with a "get additional data"
//    command and concatenated after the primary payload.
//
// 2. '92XX' (Transient Failure): The command failed, but an immediate retry
//    may succeed. The terminal must retry at least once; if the retry fails
//    the session ends.
//
// 3. '9500' (Authentication Failed): The device rejected the terminal's
//    credentials. Never retryable.
//
// Anything else outside 0x9000 is fatal for the session. The classification
// below is a closed set so the retry/fatal boundary is checkable
// exhaustively; a status outside Success/MoreData/Transient never yields a
// usable payload.

// StatusWord represents the two-byte status response (SW1-SW2) returned by the device.
type StatusWord uint16

// NewStatusWord creates a StatusWord instance from two separate bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the first byte (high byte) of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the second byte (low byte) of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// Outcome is the closed classification of a status word the protocol
// branches on.
type Outcome int

const (
	// OutcomeSuccess is 0x9000: the payload is complete and usable.
	OutcomeSuccess Outcome = iota
	// OutcomeMoreData is the 0x91XX band: the payload is usable but a
	// supplementary fetch holds the remainder.
	OutcomeMoreData
	// OutcomeTransient is the 0x92XX band: retryable failure, no payload.
	OutcomeTransient
	// OutcomeAuthFailed is 0x9500: the device could not authenticate the
	// terminal. Not retryable.
	OutcomeAuthFailed
	// OutcomeFatal covers every other status word.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "Success"
	case OutcomeMoreData:
		return "More Data Available"
	case OutcomeTransient:
		return "Transient Failure"
	case OutcomeAuthFailed:
		return "Authentication Failed"
	default:
		return "Fatal"
	}
}

// Outcome classifies the status word into the protocol's closed set.
func (sw StatusWord) Outcome() Outcome {
	switch {
	case sw == SW_NO_ERROR:
		return OutcomeSuccess
	case sw.SW1() == 0x91:
		return OutcomeMoreData
	case sw.SW1() == 0x92:
		return OutcomeTransient
	case sw == SW_AUTH_FAILED:
		return OutcomeAuthFailed
	default:
		return OutcomeFatal
	}
}

// IsSuccess returns true if the command produced a usable payload
// (0x9000 or the 0x91XX more-data band).
func (sw StatusWord) IsSuccess() bool {
	o := sw.Outcome()
	return o == OutcomeSuccess || o == OutcomeMoreData
}

// Verbose returns a human-readable description of the status word.
func (sw StatusWord) Verbose() string {
	if sw.SW1() == 0x61 {
		return fmt.Sprintf("[%04X] Process completed, %d bytes available", uint16(sw), sw.SW2())
	}
	if sw.SW1() == 0x6C {
		return fmt.Sprintf("[%04X] Wrong length, correct Le is %d", uint16(sw), sw.SW2())
	}

	switch sw {
	case SW_ERR_WRONG_LENGTH:
		return fmt.Sprintf("[%04X] Checking Error: Wrong length", uint16(sw))
	case SW_ERR_FILE_NOT_FOUND:
		return fmt.Sprintf("[%04X] Checking Error: File or application not found", uint16(sw))
	case SW_ERR_INS_INVALID:
		return fmt.Sprintf("[%04X] Checking Error: Instruction not supported", uint16(sw))
	case SW_ERR_CLA_NOT_SUPPORTED:
		return fmt.Sprintf("[%04X] Checking Error: Class not supported", uint16(sw))
	}

	return fmt.Sprintf("[%04X] %s", uint16(sw), sw.Outcome())
}

// Status Word codes the terminal encounters.
const (
	SW_NO_ERROR    StatusWord = 0x9000
	SW_MORE_DATA   StatusWord = 0x9100
	SW_TRANSIENT   StatusWord = 0x9200
	SW_AUTH_FAILED StatusWord = 0x9500

	SW_ERR_WRONG_LENGTH      StatusWord = 0x6700
	SW_ERR_FILE_NOT_FOUND    StatusWord = 0x6A82
	SW_ERR_INS_INVALID       StatusWord = 0x6D00
	SW_ERR_CLA_NOT_SUPPORTED StatusWord = 0x6E00
)
