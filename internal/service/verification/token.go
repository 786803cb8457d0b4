package verification

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Well-known names a domain owner publishes to prove ownership.
const (
	TXTLabel        = "_domainwatch-verify"
	FileDir         = "/.well-known/domainwatch/"
	LegacyFilePath  = "/.well-known/domainwatch.html"
	MetaName        = "domainwatch-verify"
	FileContentHead = "domainwatch-verify: "
)

// TXTRecordName returns the name the TXT record must be published at.
func TXTRecordName(domainName string) string {
	return TXTLabel + "." + domainName
}

// FilePath returns the per-token verification file path.
func FilePath(token string) string {
	return FileDir + token + ".html"
}

// FileContent returns the exact (trimmed) body the verification file must serve.
func FileContent(token string) string {
	return FileContentHead + token
}

// MetaTag returns the tag to place in the home page's <head>.
func MetaTag(token string) string {
	return fmt.Sprintf(`<meta name="%s" content="%s">`, MetaName, token)
}

// Instructions describes every way the owner can publish token.
type Instructions struct {
	TXTName     string `json:"txtName"`
	TXTValue    string `json:"txtValue"`
	FilePath    string `json:"filePath"`
	FileContent string `json:"fileContent"`
	MetaTag     string `json:"metaTag"`
}

// InstructionsFor builds the publication instructions for a domain.
func InstructionsFor(domainName, token string) Instructions {
	return Instructions{
		TXTName:     TXTRecordName(domainName),
		TXTValue:    token,
		FilePath:    FilePath(token),
		FileContent: FileContent(token),
		MetaTag:     MetaTag(token),
	}
}

// GenerateToken returns a random 32-character hex token.
func GenerateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NormalizeDomain lowercases and trims a user-entered domain and validates
// its format.
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimSuffix(strings.SplitN(d, "/", 2)[0], ".")
	if err := validateDomainFormat(d); err != nil {
		return "", &ValidationError{Field: "domain", Err: fmt.Errorf("%w: %v", ErrInvalidDomain, err)}
	}
	return d, nil
}

// validateDomainFormat validates the format of a domain name
func validateDomainFormat(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}
	if len(domain) > 253 {
		return fmt.Errorf("domain name too long (max 253 characters)")
	}

	parts := strings.Split(domain, ".")
	if len(parts) < 2 {
		return fmt.Errorf("must contain at least one dot")
	}
	for _, part := range parts {
		if len(part) == 0 {
			return fmt.Errorf("empty label")
		}
		if len(part) > 63 {
			return fmt.Errorf("label too long (max 63 characters)")
		}
		if part[0] == '-' || part[len(part)-1] == '-' {
			return fmt.Errorf("labels cannot start or end with hyphen")
		}
		for _, c := range part {
			if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-') {
				return fmt.Errorf("invalid character '%c'", c)
			}
		}
	}
	return nil
}
