package config

import (
	"bytes"
	"fmt"
	"html/template"
)

// Email templates shared by the notification and birthday services. The layout
// is fixed; only title, message and the optional action link vary.

var generalNotificationTmpl = template.Must(template.New("general").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f9f9f9;">
  <div style="background-color: white; padding: 30px; border-radius: 10px;">
    <div style="text-align: center; margin-bottom: 30px;">
      <h1 style="color: #2563eb; margin: 0; font-size: 24px;">{{.Title}}</h1>
      <div style="width: 50px; height: 3px; background-color: #2563eb; margin: 10px auto;"></div>
    </div>
    <div style="color: #374151; font-size: 16px; line-height: 1.6; margin: 25px 0;">{{.Message}}</div>
    {{if .ActionURL}}
    <div style="text-align: center; margin: 30px 0;">
      <a href="{{.ActionURL}}" style="background-color: #2563eb; color: white; padding: 12px 30px; text-decoration: none; border-radius: 6px; font-weight: bold; display: inline-block;">View in the portal</a>
    </div>
    {{end}}
    <div style="text-align: center; margin-top: 30px; padding-top: 20px; border-top: 1px solid #e5e7eb;">
      <p style="color: #6b7280; font-size: 12px; margin: 0;">HR Portal</p>
    </div>
  </div>
</div>
`))

var birthdayTmpl = template.Must(template.New("birthday").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background-color: white; padding: 40px; border-radius: 15px; text-align: center;">
    <h1 style="color: #2563eb; margin: 0 0 10px 0; font-size: 32px;">Happy Birthday!</h1>
    <h2 style="color: #1f2937; margin: 0 0 20px 0; font-size: 24px;">{{.FirstName}} {{.LastName}}</h2>
    <p style="color: #374151; font-size: 18px; line-height: 1.6;">On this special day, the whole team sends you their best wishes.</p>
    <div style="background-color: #f8fafc; padding: 20px; border-radius: 10px; margin: 25px 0;">
      <p style="margin: 5px 0; color: #64748b; font-size: 14px;"><strong>Position:</strong> {{.Position}}</p>
      <p style="margin: 5px 0; color: #64748b; font-size: 14px;"><strong>Department:</strong> {{.Department}}</p>
    </div>
    <p style="color: #6b7280; font-size: 14px; margin: 0;">This is an automated message from the HR portal.</p>
  </div>
</div>
`))

// GeneralNotificationEmail renders the subject and HTML body for a
// notification email. ActionURL may be empty.
func GeneralNotificationEmail(title, message, actionURL string) (string, string, error) {
	var buf bytes.Buffer
	data := struct {
		Title     string
		Message   string
		ActionURL string
	}{title, message, actionURL}
	if err := generalNotificationTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return fmt.Sprintf("Notification - %s", title), buf.String(), nil
}

// BirthdayEmail renders the subject and HTML body for a birthday greeting.
func BirthdayEmail(firstName, lastName, position, department string) (string, string, error) {
	if position == "" {
		position = "Employee"
	}
	if department == "" {
		department = "HR Portal"
	}
	var buf bytes.Buffer
	data := struct {
		FirstName  string
		LastName   string
		Position   string
		Department string
	}{firstName, lastName, position, department}
	if err := birthdayTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return fmt.Sprintf("Happy Birthday %s!", firstName), buf.String(), nil
}
