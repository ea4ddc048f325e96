package sqlite

import (
	"fmt"
	"net/url"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds SQLite pragmas applied on every connection.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	BusyTimeout int    `mapstructure:"busy_timeout"`
	JournalMode string `mapstructure:"journal_mode"`
	Synchronous string `mapstructure:"synchronous"`
}

func parseParams(raw map[string]any) (*Params, error) {
	params := &Params{BusyTimeout: 5000}
	if len(raw) == 0 {
		return params, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           params,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid sqlite params: %w", err)
	}
	return params, nil
}

// buildDSN renders a modernc DSN carrying the pragmas as _pragma parameters.
func buildDSN(path string, params *Params) string {
	q := url.Values{}
	if params.BusyTimeout > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", params.BusyTimeout))
	}
	if params.JournalMode != "" {
		q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", params.JournalMode))
	}
	if params.Synchronous != "" {
		q.Add("_pragma", fmt.Sprintf("synchronous(%s)", params.Synchronous))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
