// Package mailtmpl renders the HTML bodies of account emails.
package mailtmpl

import (
	"bytes"
	"html/template"
	"net/url"
	"strconv"
	"time"
)

const (
	VerificationSubject  = "Account Verification"
	PasswordResetSubject = "Password Reset OTP"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>Thanks for signing up. Please confirm your email address by clicking the link below.</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>The link expires in {{.Valid}}.</p>
<p>If you did not create an account, you can ignore this message.</p>
</body>
</html>
`))

var resetTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>Your password reset code is:</p>
<p style="font-size:24px;letter-spacing:4px"><strong>{{.Code}}</strong></p>
<p>This code is valid for the next {{.Valid}}.</p>
<p>If you did not request a password reset, you can ignore this message.</p>
</body>
</html>
`))

// VerificationLink appends token as the token query parameter of base.
func VerificationLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func Verification(name, link string, valid time.Duration) (string, error) {
	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, struct {
		Name  string
		Link  template.URL
		Valid string
	}{name, template.URL(link), humanize(valid)})
	return buf.String(), err
}

func PasswordReset(name, code string, valid time.Duration) (string, error) {
	var buf bytes.Buffer
	err := resetTmpl.Execute(&buf, struct {
		Name  string
		Code  string
		Valid string
	}{name, code, humanize(valid)})
	return buf.String(), err
}

func humanize(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
