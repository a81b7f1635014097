package model

import "strconv"

// CNFields is the fixed set of outputs extracted from a confirmation note.
// Values are kept as the oracle rendered them; numeric normalisation belongs
// to the workbook, not the pipeline.
type CNFields struct {
	IsCN           string `json:"is_cn,omitempty"`
	OperationType  string `json:"operation_type,omitempty"`
	IsMultiseries  string `json:"is_multiseries,omitempty"`
	Currency       string `json:"currency,omitempty"`
	GrossAmount    string `json:"gross_amount,omitempty"`
	NetAmount      string `json:"net_amount,omitempty"`
	Units          string `json:"units,omitempty"`
	Equalization   string `json:"equalization,omitempty"`
	Fees           string `json:"fees,omitempty"`
	NAVPrice       string `json:"nav_price,omitempty"`
	NAVDate        string `json:"nav_date,omitempty"`
	SettlementDate string `json:"settlement_date,omitempty"`
}

// FieldKeys lists the JSON keys the oracle is asked for, in output column order.
var FieldKeys = []string{
	"is_cn",
	"operation_type",
	"is_multiseries",
	"currency",
	"gross_amount",
	"net_amount",
	"units",
	"equalization",
	"fees",
	"nav_price",
	"nav_date",
	"settlement_date",
}

// CNFieldsFromMap builds CNFields from a decoded oracle object. Keys outside
// FieldKeys are dropped, nulls become empty strings, numbers and booleans are
// rendered as text. The struct is built whole: either all recognised keys are
// taken from the one object or none are.
func CNFieldsFromMap(m map[string]any) *CNFields {
	get := func(key string) string {
		v, ok := m[key]
		if !ok || v == nil {
			return ""
		}
		switch t := v.(type) {
		case string:
			return t
		case bool:
			return strconv.FormatBool(t)
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return ""
		}
	}
	return &CNFields{
		IsCN:           get("is_cn"),
		OperationType:  get("operation_type"),
		IsMultiseries:  get("is_multiseries"),
		Currency:       get("currency"),
		GrossAmount:    get("gross_amount"),
		NetAmount:      get("net_amount"),
		Units:          get("units"),
		Equalization:   get("equalization"),
		Fees:           get("fees"),
		NAVPrice:       get("nav_price"),
		NAVDate:        get("nav_date"),
		SettlementDate: get("settlement_date"),
	}
}

// Values returns the field values in FieldKeys order, for tabular export.
func (f *CNFields) Values() []string {
	return []string{
		f.IsCN,
		f.OperationType,
		f.IsMultiseries,
		f.Currency,
		f.GrossAmount,
		f.NetAmount,
		f.Units,
		f.Equalization,
		f.Fees,
		f.NAVPrice,
		f.NAVDate,
		f.SettlementDate,
	}
}
