package iso7816

import "fmt"

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// The INS byte identifies the specific command to be performed by the device.
// INS values where the upper nibble is '6' or '9' are invalid: those values
// are reserved for Status Words (SW1) or transport layer control procedures
// (ISO/IEC 7816-3). Note that this restricts the INS byte only; the Smart
// Tap applet's proprietary CLASS is 0x90, which is fine.

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction codes used by the terminal: the interindustry SELECT and
// GET RESPONSE, plus the Smart Tap applet's proprietary set.
const (
	INS_SELECT       InsCode = 0xA4
	INS_GET_RESPONSE InsCode = 0xC0

	// Smart Tap applet instructions (used with CLA 0x90).
	INS_NEGOTIATE_SECURE_SESSIONS InsCode = 0x53
	INS_GET_DATA                  InsCode = 0x50
	// The "get additional smart tap data" command shares the GET RESPONSE
	// instruction byte but is issued under the proprietary class.
	INS_GET_ADDITIONAL_DATA InsCode = 0xC0
)

// Valid rejects '6X' and '9X' values as they are reserved per ISO 7816-3.
func (i InsCode) Valid() bool {
	highNibble := byte(i) & 0xF0
	return highNibble != 0x60 && highNibble != 0x90
}

func (i InsCode) String() string {
	switch i {
	case INS_SELECT:
		return "SELECT"
	case INS_GET_RESPONSE:
		return "GET RESPONSE / GET ADDITIONAL DATA"
	case INS_NEGOTIATE_SECURE_SESSIONS:
		return "NEGOTIATE SECURE SESSIONS"
	case INS_GET_DATA:
		return "GET SMART TAP DATA"
	default:
		return fmt.Sprintf("INS(0x%02X)", byte(i))
	}
}

// Verbose returns a human-readable description of the instruction.
func (i InsCode) Verbose() string {
	return fmt.Sprintf("INS: 0x%02X | Command: %s", byte(i), i.String())
}
