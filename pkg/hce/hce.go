/*
Package hce is the application layer of an emulated contactless payment card.

A host-card-emulation front end hands every command APDU it receives from the
reader to Dispatch and sends the returned frame back over the radio link. The
card knows three exact command frames:

	00 A4 04 00 07 F0 01 02 03 04 05 06   SELECT (demo AID)
	00 B2 01 0C                           READ RECORD (SFI 1, record 1)
	80 A8 00 00 02 83 00 00               GET PROCESSING OPTIONS (empty PDOL)

and answers them with the payment system FCI, a Track 2 record built from the
card number, and a canned AIP/AFL response. Every other frame, including empty
or truncated ones, receives the ASCII card number. All responses end in 90 00;
no error status word is ever produced.

Each call is independent. There is no session: a READ RECORD before any SELECT
is answered the same way as after it, and every record number other than the
exact frame above falls through to the card number.
*/
package hce
