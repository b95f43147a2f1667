package catalog

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// decodeMessageFile reads a go-i18n TOML message file. The language is taken
// from the file name ("autotrad.fr.toml"), each message ID becomes a key and
// its "other" form the value.
func decodeMessageFile(path string, data []byte) (map[string]string, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	mf, err := bundle.ParseMessageFileBytes(data, path)
	if err != nil {
		return nil, fmt.Errorf("parsing message file: %w", err)
	}

	entries := make(map[string]string, len(mf.Messages))
	for _, m := range mf.Messages {
		v := m.Other
		if v == "" {
			v = m.One
		}
		if v != "" {
			entries[m.ID] = v
		}
	}
	return entries, nil
}
