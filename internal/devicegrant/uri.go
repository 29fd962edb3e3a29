package devicegrant

import (
	"net/url"
	"path"
)

// verificationURIs builds the verification URIs per RFC 8628 sections 3.2
// and 3.3.1: the base URI the user visits to enter the code, and the
// complete URI with the user code pre-filled for non-textual transmission.
func (f *Flow) verificationURIs(userCode string) (string, string) {
	base, err := url.Parse(f.baseURL)
	if err != nil {
		return "", ""
	}

	base.Path = path.Join(base.Path, "device")
	verificationURI := base.String()

	complete := *base
	q := complete.Query()
	q.Set("code", userCode) // display format, per RFC 8628 section 6.1
	complete.RawQuery = q.Encode()

	return verificationURI, complete.String()
}
