package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Session identifies one of the three daily range sessions.
type Session string

const (
	SessionODR Session = "odr" // overnight (London) range
	SessionRDR Session = "rdr" // regular (New York) range
	SessionADR Session = "adr" // Asian range
)

// Sessions lists all sessions in evaluation order.
var Sessions = []Session{SessionRDR, SessionODR, SessionADR}

// Valid returns true if the session is one of the known constants.
func (s Session) Valid() bool {
	switch s {
	case SessionODR, SessionRDR, SessionADR:
		return true
	default:
		return false
	}
}

func (s Session) String() string {
	return string(s)
}

// Upper returns the display form used in logs and the dashboard ("RDR").
func (s Session) Upper() string {
	return strings.ToUpper(string(s))
}

func (s *Session) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sess := Session(strings.ToLower(strings.TrimSpace(raw)))
	if !sess.Valid() {
		return fmt.Errorf("invalid session: %s", raw)
	}
	*s = sess
	return nil
}

// Bias is the direction of a range confirmation.
type Bias string

const (
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
)

// Valid returns true if the bias is bullish or bearish.
func (b Bias) Valid() bool {
	return b == BiasBullish || b == BiasBearish
}

func (b Bias) String() string {
	return string(b)
}
