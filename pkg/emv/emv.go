// Package emv builds and parses the EMV objects exchanged during a contactless
// payment session: the payment system FCI, the Application Interchange Profile,
// the Application File Locator, record templates and the GET PROCESSING OPTIONS
// response.
//
// Builders are used by the emulated card; parsers and Describe() reports by the
// terminal side.
package emv

import "github.com/gregLibert/hce-card/pkg/tlv"

const (
	// PPSEName is the DF name of the proximity payment system environment.
	PPSEName = "2PAY.SYS.DDF01"

	// DefaultCardNumber is the emulated card number.
	DefaultCardNumber = "3926998730"

	// LanguagePreference is the value of tag 5F2D in the payment system FCI.
	LanguagePreference = "trustede"
)

// DemoAID is the application identifier the emulated card answers to.
var DemoAID = []byte{0xF0, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}

// paymentSystemFCI is answered byte for byte. Its A5 template declares 12
// bytes while the children occupy 14, so strict BER-TLV decoders reject it.
var paymentSystemFCI = tlv.Hex(
	"6F 1E",
	"84 0E 325041592E5359532E4444463031", // "2PAY.SYS.DDF01"
	"A5 0C",
	"88 01 01",                           // SFI 1
	"5F2D 08 7472757374656465",           // "trustede"
	"9F11 01 01",                         // issuer code table index
)

// PaymentSystemFCI returns a fresh copy of the canned FCI answered to SELECT.
func PaymentSystemFCI() []byte {
	out := make([]byte, len(paymentSystemFCI))
	copy(out, paymentSystemFCI)
	return out
}
