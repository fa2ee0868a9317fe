// Package iso7816 encodes, decodes and describes the APDUs of ISO/IEC 7816-4
// for both ends of a contactless link.
//
// A reader builds commands with the helpers (SelectByAID, ReadRecord, ...)
// and runs them through a Client, which turns a card's '61 XX' and '6C XX'
// answers into the follow-up exchanges they ask for and returns a Result:
//
//	client := iso7816.NewClient(reader)
//	cls, _ := iso7816.NewClass(0x00)
//	res, err := client.SendResult(iso7816.SelectByAID(cls, aid))
//	if err != nil {
//		return err
//	}
//	fmt.Println(res.Describe())
//	fci, err := res.Payload() // error unless the final status is 90 00
//
// A card decodes what it receives with ParseCommandAPDU and answers with
// ResponseAPDU.Bytes:
//
//	cmd, err := iso7816.ParseCommandAPDU(frame)
//	if err != nil {
//		return iso7816.NewResponseAPDU(nil, iso7816.SW_ERR_WRONG_LENGTH).Bytes()
//	}
//
// Status words are typed (StatusWord) and carry the EMV reading of each code.
package iso7816
