package provider

import (
    "bytes"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "strings"

    "github.com/shopspring/decimal"
)

// Value is a JSON scalar kept in its literal form. Vendors document these
// fields as strings but occasionally send bare numbers; null decodes to "".
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
    b = bytes.TrimSpace(b)
    switch {
    case len(b) == 0, bytes.Equal(b, []byte("null")):
        *v = ""
    case b[0] == '"':
        var s string
        if err := json.Unmarshal(b, &s); err != nil {
            return err
        }
        *v = Value(s)
    case b[0] == '{' || b[0] == '[':
        return fmt.Errorf("unexpected JSON %s for scalar value", kindOf(b[0]))
    default:
        *v = Value(b)
    }
    return nil
}

func kindOf(c byte) string {
    if c == '{' { return "object" }
    return "array"
}

// Fields is the labeled "Global Quote" object. Anything other than an object
// (an empty array, a string, null) decodes to nil, i.e. no quote.
type Fields map[string]Value

func (f *Fields) UnmarshalJSON(b []byte) error {
    b = bytes.TrimSpace(b)
    if len(b) == 0 || b[0] != '{' {
        *f = nil
        return nil
    }
    var out map[string]Value
    if err := json.Unmarshal(b, &out); err != nil {
        return err
    }
    *f = out
    return nil
}

// RawGlobalQuote is the provider-A ("Global Quote") payload.
type RawGlobalQuote struct {
    Quote        Fields `json:"Global Quote"`
    Note         string `json:"Note"`
    Information  string `json:"Information"`
    ErrorMessage string `json:"Error Message"`
}

// Provider-A labeled keys.
const (
    keySymbol        = "01. symbol"
    keyOpen          = "02. open"
    keyHigh          = "03. high"
    keyLow           = "04. low"
    keyPrice         = "05. price"
    keyVolume        = "06. volume"
    keyLatestDay     = "07. latest trading day"
    keyPreviousClose = "08. previous close"
    keyChange        = "09. change"
    keyChangePercent = "10. change percent"
)

const noDataDetail = "no data returned for symbol"

// advisory returns the vendor note explaining an empty wrapper, if any.
func (r RawGlobalQuote) advisory() string {
    for _, s := range []string{r.Note, r.Information, r.ErrorMessage} {
        if s = strings.TrimSpace(s); s != "" {
            return s
        }
    }
    return ""
}

// NormalizeGlobalQuote remaps a provider-A payload. Change and percent are
// passed through as sent.
func NormalizeGlobalQuote(raw RawGlobalQuote) (Quote, error) {
    if len(raw.Quote) == 0 {
        detail := raw.advisory()
        if detail == "" { detail = noDataDetail }
        return Quote{}, &NotFoundError{Detail: detail}
    }
    q := raw.Quote
    return Quote{
        Symbol:        string(q[keySymbol]),
        Open:          string(q[keyOpen]),
        High:          string(q[keyHigh]),
        Low:           string(q[keyLow]),
        Price:         string(q[keyPrice]),
        Volume:        string(q[keyVolume]),
        LatestDay:     string(q[keyLatestDay]),
        PreviousClose: string(q[keyPreviousClose]),
        Change:        string(q[keyChange]),
        Percent:       string(q[keyChangePercent]),
    }, nil
}

// Bar is one OHLCV sample of a provider-B series.
type Bar struct {
    Datetime Value `json:"datetime"`
    Open     Value `json:"open"`
    High     Value `json:"high"`
    Low      Value `json:"low"`
    Close    Value `json:"close"`
    Volume   Value `json:"volume"`
}

// Bars decodes a JSON array of bars. Anything other than an array
// decodes to no bars, which normalization reports as not found.
type Bars []Bar

func (bs *Bars) UnmarshalJSON(b []byte) error {
    b = bytes.TrimSpace(b)
    if len(b) == 0 || b[0] != '[' {
        *bs = nil
        return nil
    }
    var out []Bar
    if err := json.Unmarshal(b, &out); err != nil {
        return err
    }
    *bs = out
    return nil
}

// SeriesMeta is the provider-B meta block.
type SeriesMeta struct {
    Symbol           string `json:"symbol"`
    Interval         string `json:"interval"`
    Currency         string `json:"currency"`
    Exchange         string `json:"exchange"`
    ExchangeTimezone string `json:"exchange_timezone"`
    Timezone         string `json:"timezone"`
    Type             string `json:"type"`
}

// RawTimeSeries is the provider-B payload. Bars are newest first.
type RawTimeSeries struct {
    Meta    SeriesMeta `json:"meta"`
    Values  Bars       `json:"values"`
    Status  string     `json:"status"`
    Code    int        `json:"code"`
    Message string     `json:"message"`
}

const (
    defaultCurrency = "USD"
    defaultExchange = "Unknown"
    defaultTimezone = "UTC"
)

// NormalizeTimeSeries builds a Quote from the two newest bars, deriving
// change and percent from their closes.
func NormalizeTimeSeries(raw RawTimeSeries) (Quote, error) {
    if strings.EqualFold(raw.Status, "error") {
        msg := strings.TrimSpace(raw.Message)
        if msg == "" { msg = "invalid request" }
        return Quote{}, &ProviderError{Code: raw.Code, Message: msg}
    }
    if len(raw.Values) == 0 {
        return Quote{}, &NotFoundError{Symbol: raw.Meta.Symbol, Detail: noDataDetail}
    }

    latest := raw.Values[0]
    previous := latest
    if len(raw.Values) > 1 {
        previous = raw.Values[1]
    }

    last, err := parseDecimal("close", latest.Close)
    if err != nil { return Quote{}, err }
    prev, err := parseDecimal("previous close", previous.Close)
    if err != nil { return Quote{}, err }

    change, percent := derive(last, prev)

    m := raw.Meta
    tz := m.ExchangeTimezone
    if tz == "" { tz = m.Timezone }
    return Quote{
        Symbol:        m.Symbol,
        Open:          string(latest.Open),
        High:          string(latest.High),
        Low:           string(latest.Low),
        Price:         string(latest.Close),
        Volume:        string(latest.Volume),
        LatestDay:     string(latest.Datetime),
        PreviousClose: string(previous.Close),
        Change:        change,
        Percent:       percent,
        Interval:      m.Interval,
        Currency:      orDefault(m.Currency, defaultCurrency),
        Exchange:      orDefault(m.Exchange, defaultExchange),
        Timezone:      orDefault(tz, defaultTimezone),
    }, nil
}

var hundred = decimal.NewFromInt(100)

// derive returns change and percent, both with two fractional digits.
// Percent is computed from the unrounded change.
func derive(last, prev decimal.Decimal) (change, percent string) {
    diff := last.Sub(prev)
    change = diff.StringFixed(2)
    if prev.IsZero() {
        return change, "0.00%"
    }
    return change, diff.Div(prev).Mul(hundred).StringFixed(2) + "%"
}

func parseDecimal(field string, v Value) (decimal.Decimal, error) {
    s := strings.TrimSpace(string(v))
    if s == "" {
        return decimal.Zero, &ParseError{Field: field, Err: errors.New("empty value")}
    }
    d, err := decimal.NewFromString(s)
    if err != nil {
        return decimal.Zero, &ParseError{Field: field, Value: s, Err: err}
    }
    return d, nil
}

func orDefault(s, def string) string {
    if strings.TrimSpace(s) == "" { return def }
    return s
}

// DecodeGlobalQuote reads a provider-A body.
func DecodeGlobalQuote(r io.Reader) (RawGlobalQuote, error) {
    var raw RawGlobalQuote
    if err := json.NewDecoder(r).Decode(&raw); err != nil {
        return RawGlobalQuote{}, &ParseError{Field: "body", Err: err}
    }
    return raw, nil
}

// DecodeTimeSeries reads a provider-B body.
func DecodeTimeSeries(r io.Reader) (RawTimeSeries, error) {
    var raw RawTimeSeries
    if err := json.NewDecoder(r).Decode(&raw); err != nil {
        return RawTimeSeries{}, &ParseError{Field: "body", Err: err}
    }
    return raw, nil
}
