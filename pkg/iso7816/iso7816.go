/*
Package iso7816 implements the APDU layer a Smart Tap terminal speaks with a
contactless device, following ISO/IEC 7816-3 and 7816-4.

This package provides the fundamental building blocks for APDU (Application
Protocol Data Unit) communication: Command and Response structures, Status
Word (SW) analysis, and a Client that drives a physical transport through
the transport-level quirks of T=0.

# Fundamentals

The communication with a device is strictly synchronous:
 1. The terminal sends a Command APDU (Header + Optional Body).
 2. The device processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

# Status Words

Every response ends with a 2-byte Status Word (SW). The Smart Tap applet
uses the 9XXX band on top of the generic ISO codes:

  - 0x9000: Success (OK).
  - 0x91XX: Success, more protocol data is available via a supplementary
    "get additional data" exchange.
  - 0x92XX: Transient failure; an immediate retry of the same command may
    succeed.
  - 0x9500: The device could not authenticate the terminal.
  - 0x61XX: Transport-level "response available" (T=0); handled by the Client.
  - Other: Fatal error conditions.

The Outcome classification collapses these bands into the closed set the
session logic branches on.

# Usage Example

	client := iso7816.NewClient(card)

	trace, err := client.Send(cmd)
	if err != nil {
	    return err
	}

	resp := trace.Last().Response
	switch resp.Status.Outcome() {
	case iso7816.OutcomeSuccess:
	    // consume resp.Data
	case iso7816.OutcomeMoreData:
	    // issue the supplementary fetch and concatenate payloads
	case iso7816.OutcomeTransient:
	    // retry the logical step
	default:
	    // end the session
	}
*/
package iso7816
