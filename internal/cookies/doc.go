// Package cookies models the credential handle passed through to the
// download tool: either a Netscape-format cookie file or a browser profile
// specifier of the form BROWSER[+KEYRING][:PROFILE][::CONTAINER].
//
// The package only validates and normalizes the handle; cookie extraction
// itself happens inside the download tool.
package cookies
