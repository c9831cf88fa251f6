package xzz

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/des"
)

// MasterKey is the built-in key used when no override is configured.
const MasterKey uint64 = 0xDCFC12AC00000000

// EnvKeys are the environment variables consulted for a key override, in
// order.
var EnvKeys = []string{"BOARDVIEW_XZZPCB_KEY", "XZZPCB_KEY"}

// Key source tags reported under meta.key_source.
const (
	KeySourceEnv    = "env"
	KeySourceConfig = "config"
	KeySourceOBV    = "obv_conf"
	KeySourceMaster = "master_key"
)

var confKeyRe = regexp.MustCompile(`XZZPCBKey\s*=\s*([^\s#]+)`)

// DefaultConfPaths lists the OpenBoardView configuration files that may carry
// an XZZPCBKey entry.
func DefaultConfPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".config", "OpenBoardView", "obv.conf"),
		filepath.Join(home, ".config", "openboardview", "obv.conf"),
		filepath.Join(home, "Library", "Application Support", "OpenBoardView", "obv.conf"),
		filepath.Join(home, "Library", "Application Support", "openboardview", "obv.conf"),
	}
}

// parseKey accepts decimal, 0x hex, 0o octal and 0b binary spellings.
func parseKey(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, 64)
}

// ResolveKey walks the key sources in order (environment, configured key,
// obv.conf files, master key) and returns the first key that parses and
// passes the parity rule, together with its source tag.
func (d *Decoder) ResolveKey() (uint64, string, error) {
	log := d.logger()
	accept := func(source, raw string) (uint64, bool) {
		k, err := parseKey(raw)
		if err != nil {
			log.Debug("xzz key rejected", "source", source, "reason", "unparsable")
			return 0, false
		}
		if !des.ParityOK(k) {
			log.Debug("xzz key rejected", "source", source, "reason", "parity")
			return 0, false
		}
		return k, true
	}

	getenv := d.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, name := range EnvKeys {
		if raw := getenv(name); raw != "" {
			if k, ok := accept(KeySourceEnv, raw); ok {
				return k, KeySourceEnv, nil
			}
		}
	}
	if d.Key != "" {
		if k, ok := accept(KeySourceConfig, d.Key); ok {
			return k, KeySourceConfig, nil
		}
	}
	for _, path := range d.ConfPaths {
		raw, ok := readConfKey(path)
		if !ok {
			continue
		}
		if k, ok := accept(KeySourceOBV, raw); ok {
			return k, KeySourceOBV, nil
		}
	}
	if des.ParityOK(d.Master) {
		return d.Master, KeySourceMaster, nil
	}
	return 0, "", model.ErrMissingOrInvalidKey
}

// readConfKey returns the first XZZPCBKey value found in an obv.conf file.
func readConfKey(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if m := confKeyRe.FindStringSubmatch(sc.Text()); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func (d *Decoder) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return discard
}
