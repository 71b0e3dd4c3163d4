// Package probe checks whether a golf club's listed website answers.
//
// A listed website is normalized to an https:// URL and requested once with
// a GET that follows redirects. Any HTTP response, whatever its status code,
// is a Success outcome carrying the status and the final URL. Failures below
// the HTTP layer are classified into error kinds such as Timeout or
// SSLError. Resolve retries a failed https:// URL once over plain http://.
package probe
