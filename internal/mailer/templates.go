package mailer

import (
	"fmt"
	"html"
	"time"
)

// VoucherClaimedEmail builds the confirmation sent when a user claims a voucher.
func VoucherClaimedEmail(partnerName, offerTitle, code, shareURL string, expiresAt time.Time) (subject, bodyHTML string) {
	subject = fmt.Sprintf("Your Balkly voucher for %s", partnerName)
	bodyHTML = fmt.Sprintf(`<p>Your voucher for <strong>%s</strong> is ready.</p>
<p>Offer: %s</p>
<p>Code: <strong>%s</strong></p>
<p>Show this code (or the QR at <a href="%s">%s</a>) to staff before %s.</p>`,
		html.EscapeString(partnerName),
		html.EscapeString(offerTitle),
		html.EscapeString(code),
		shareURL, shareURL,
		expiresAt.Format("2 Jan 2006 15:04 MST"))
	return subject, bodyHTML
}

// RedemptionReceiptEmail builds the receipt sent after staff redeem a voucher.
func RedemptionReceiptEmail(partnerName, offerTitle, code string, redeemedAt time.Time) (subject, bodyHTML string) {
	subject = fmt.Sprintf("Voucher redeemed at %s", partnerName)
	bodyHTML = fmt.Sprintf(`<p>Your voucher <strong>%s</strong> was redeemed at <strong>%s</strong> on %s.</p>
<p>Offer: %s</p>
<p>Thanks for using Balkly.</p>`,
		html.EscapeString(code),
		html.EscapeString(partnerName),
		redeemedAt.Format("2 Jan 2006 15:04 MST"),
		html.EscapeString(offerTitle))
	return subject, bodyHTML
}
