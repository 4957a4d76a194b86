package codec

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/streadmulti/domain/model"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"go.uber.org/zap"
)

// DefaultEncoding is used when no rule decides a Shapefile attribute encoding
const DefaultEncoding = "UTF-8"

// encodingAliases maps code page spellings seen in .cpg files and user input
// to IANA names. Keys are upper case.
var encodingAliases = buildEncodingAliases()

func buildEncodingAliases() map[string]string {
	aliases := map[string]string{
		"UTF8":        "UTF-8",
		"UTF-8":       "UTF-8",
		"65001":       "UTF-8",
		"CP65001":     "UTF-8",
		"CP932":       "Shift_JIS",
		"932":         "Shift_JIS",
		"MS932":       "Shift_JIS",
		"SJIS":        "Shift_JIS",
		"SHIFT_JIS":   "Shift_JIS",
		"SHIFT-JIS":   "Shift_JIS",
		"WINDOWS-31J": "Shift_JIS",
		"CP936":       "GBK",
		"936":         "GBK",
		"GBK":         "GBK",
		"CP949":       "EUC-KR",
		"949":         "EUC-KR",
		"EUC-KR":      "EUC-KR",
		"CP950":       "Big5",
		"950":         "Big5",
		"BIG5":        "Big5",
		"CP437":       "IBM437",
		"437":         "IBM437",
		"CP850":       "IBM850",
		"850":         "IBM850",
		"CP866":       "IBM866",
		"866":         "IBM866",
		"CP874":       "windows-874",
		"874":         "windows-874",
		"LATIN1":      "ISO-8859-1",
		"88591":       "ISO-8859-1",
		"8859-1":      "ISO-8859-1",
		"ISO-8859-1":  "ISO-8859-1",
		"ISO88591":    "ISO-8859-1",
		"ANSI 1252":   "windows-1252",
	}
	for cp := 1250; cp <= 1258; cp++ {
		name := "windows-" + strconv.Itoa(cp)
		aliases[strconv.Itoa(cp)] = name
		aliases["CP"+strconv.Itoa(cp)] = name
		aliases[strings.ToUpper(name)] = name
	}
	return aliases
}

// ldidEncodings maps the DBF language driver id (header byte 29) to IANA names
var ldidEncodings = map[byte]string{
	0x01: "IBM437",
	0x02: "IBM850",
	0x03: "windows-1252",
	0x08: "IBM865",
	0x13: "Shift_JIS",
	0x26: "IBM866",
	0x4D: "GBK",
	0x4E: "EUC-KR",
	0x4F: "Big5",
	0x57: "windows-1252",
	0x58: "windows-1252",
	0x59: "windows-1252",
	0x64: "IBM852",
	0x65: "IBM866",
	0x78: "Big5",
	0x79: "EUC-KR",
	0x7A: "GBK",
	0x7B: "Shift_JIS",
	0x7C: "windows-874",
	0x7D: "windows-1255",
	0x7E: "windows-1256",
	0x87: "IBM852",
	0xC8: "windows-1250",
	0xC9: "windows-1251",
	0xCA: "windows-1254",
	0xCB: "windows-1253",
	0xCC: "windows-1257",
}

// NormalizeEncodingLabel returns the IANA name for a code page label
func NormalizeEncodingLabel(label string) (string, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(label, "\ufeff"))
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty label", ErrUnknownEncoding)
	}
	if name, ok := encodingAliases[strings.ToUpper(trimmed)]; ok {
		return name, nil
	}

	enc, err := ianaindex.IANA.Encoding(trimmed)
	if err != nil || enc == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	if name, err := ianaindex.MIME.Name(enc); err == nil {
		return name, nil
	}
	name, err := ianaindex.IANA.Name(enc)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	return name, nil
}

// encodingRule proposes an encoding label; ok=false passes to the next rule.
// A lenient rule whose label is unknown also passes, with a warning.
type encodingRule struct {
	origin  model.EncodingOrigin
	lenient bool
	propose func() (label string, ok bool, err error)
}

// ResolveEncoding picks the attribute encoding of a Shapefile. The first rule
// that decides wins: the explicit option, the DBF language driver id, the
// .cpg sidecar, then DefaultEncoding. An unknown explicit label is an error;
// an unknown .cpg label is logged and ignored.
func ResolveEncoding(shpPath, explicit string, ldid byte, logger *zap.Logger) (model.EncodingDecision, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := []encodingRule{
		{
			origin: model.EncodingOriginExplicit,
			propose: func() (string, bool, error) {
				return explicit, strings.TrimSpace(explicit) != "", nil
			},
		},
		{
			origin: model.EncodingOriginDBFHeader,
			propose: func() (string, bool, error) {
				label, ok := ldidEncodings[ldid]
				return label, ok, nil
			},
		},
		{
			origin:  model.EncodingOriginSidecar,
			lenient: true,
			propose: func() (string, bool, error) {
				return readCPG(model.CompanionPath(shpPath, model.ExtCPG))
			},
		},
	}

	for _, rule := range rules {
		label, ok, err := rule.propose()
		if err != nil {
			return model.EncodingDecision{}, err
		}
		if !ok {
			continue
		}
		name, err := NormalizeEncodingLabel(label)
		if err != nil && rule.lenient {
			logger.Warn("ignoring unknown encoding label",
				zap.String("path", shpPath),
				zap.Stringer("origin", rule.origin),
				zap.String("label", label))
			continue
		}
		if err != nil {
			return model.EncodingDecision{}, fmt.Errorf("%s encoding for %s: %w", rule.origin, shpPath, err)
		}
		return model.EncodingDecision{Label: name, Origin: rule.origin}, nil
	}
	return model.EncodingDecision{Label: DefaultEncoding, Origin: model.EncodingOriginDefault}, nil
}

// readCPG returns the label stored in a .cpg file. A missing or blank file
// makes no decision.
func readCPG(path string) (string, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // companion of a user-provided path
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %v", ErrCompanionFile, path, err)
	}
	label := string(bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	if label == "" {
		return "", false, nil
	}
	return label, true, nil
}

// textDecoder turns raw attribute bytes into UTF-8 text
type textDecoder func([]byte) (string, error)

// newTextDecoder returns the decoder for an IANA encoding name
func newTextDecoder(name string) (textDecoder, error) {
	if strings.EqualFold(name, DefaultEncoding) {
		return func(b []byte) (string, error) {
			if utf8.Valid(b) {
				return string(b), nil
			}
			return strings.ToValidUTF8(string(b), "\uFFFD"), nil
		}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return decoderOf(enc), nil
}

func decoderOf(enc encoding.Encoding) textDecoder {
	return func(b []byte) (string, error) {
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}
