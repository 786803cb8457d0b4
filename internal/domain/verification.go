package domain

// Method is an ownership-proof method. The empty Method means "none".
type Method string

const (
	MethodDNSTXT   Method = "dns_txt"
	MethodHTMLFile Method = "html_file"
	MethodMetaTag  Method = "meta_tag"
)

// Methods lists every recognised method in verification priority order.
var Methods = []Method{MethodDNSTXT, MethodHTMLFile, MethodMetaTag}

// Valid reports whether m is one of the recognised methods.
func (m Method) Valid() bool {
	switch m {
	case MethodDNSTXT, MethodHTMLFile, MethodMetaTag:
		return true
	}
	return false
}

// VerificationResult is the terminal output of every verification attempt.
type VerificationResult struct {
	Verified bool   `json:"verified"`
	Method   Method `json:"method,omitempty"`
}
