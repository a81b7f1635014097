package oracle

// extractionPrompt instructs the model to pull the confirmation-note fields
// out of OCR text and answer with a single JSON object.
const extractionPrompt = `Extract the following fields from this Confirmation Note (CN) document:

- Is it a CN?: Boolean - Is this a Confirmation Note? (Yes/No/True/False)
- Operation Type: Type of transaction operation (e.g., Purchase, Redemption, Switch, Subscription)
- Is it a Multiseries?: Boolean - Is this a multiseries transaction? (Yes/No/True/False)
- Currency: Transaction currency code (e.g., USD, EUR, GBP, CHF)
- Gross Amount: Gross transaction amount (numeric value)
- Net Amount: Net transaction amount (numeric value)
- Units: Number of units/shares (numeric value)
- Equalization: Equalization amount (numeric value)
- Fees: Total fees charged (numeric value)
- NAV price: Net Asset Value price per unit (numeric value)
- NAV date: NAV date (format: YYYY-MM-DD or DD/MM/YYYY)
- Settlement Date: Settlement date (format: YYYY-MM-DD or DD/MM/YYYY)

Return as JSON with keys: is_cn, operation_type, is_multiseries, currency, gross_amount,
net_amount, units, equalization, fees, nav_price, nav_date, settlement_date

If a field is not found, use null.

Document text:

`

// BuildPrompt appends the recognized (and possibly truncated) document text
// to the extraction instructions.
func BuildPrompt(docText string) string {
	return extractionPrompt + docText
}
