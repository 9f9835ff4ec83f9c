package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

var codeTemplate = template.Must(template.New("code").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 24px;">
  <div style="max-width: 480px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px; text-align: center;">
    <h2 style="color: #333333;">Verify Your Account</h2>
    <p style="color: #555555;">Use the code below to verify your email address.</p>
    <p style="font-size: 32px; font-weight: bold; letter-spacing: 6px; color: #111111;">{{.Code}}</p>
    <p style="color: #999999; font-size: 12px;">If you did not request this code, you can ignore this email.</p>
  </div>
</body>
</html>`))

func codeSubject(code string) string {
	return fmt.Sprintf("%s is your verification code", code)
}

func codeBody(code string) (string, error) {
	var buf bytes.Buffer
	if err := codeTemplate.Execute(&buf, struct{ Code string }{code}); err != nil {
		return "", fmt.Errorf("render verification email: %w", err)
	}
	return buf.String(), nil
}
