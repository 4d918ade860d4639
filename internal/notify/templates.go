package notify

import "html/template"

var escalationTmpl = template.Must(template.New("escalation").Funcs(template.FuncMap{
	"who": func(sender string) string {
		if sender == "user" {
			return "Customer"
		}
		return "Bot"
	},
}).Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #25D366;">Customer Escalation Required</h2>
  <div style="background: #f5f5f5; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <h3>Customer Information:</h3>
    <p><strong>Name:</strong> {{.Name}}</p>
    <p><strong>Contact:</strong> {{.Participant}} ({{.Channel}})</p>
    <p><strong>Session ID:</strong> {{.SessionID}}</p>
    <p><strong>Reason:</strong> {{.Reason}}</p>
    <p><strong>Time:</strong> {{.At}}</p>
  </div>
  <div style="background: #fff; border: 1px solid #ddd; padding: 20px; border-radius: 8px;">
    <h3>Triggering message:</h3>
    <p>{{.Query}}</p>
    <h3>Recent Conversation:</h3>
    {{- range .Recent}}
    <div style="margin: 10px 0; padding: 10px; background: {{if eq .Sender "user"}}#DCF8C6{{else}}#f0f0f0{{end}}; border-radius: 8px;">
      <strong>{{who .Sender}}:</strong> {{.Text}}<br><small style="color: #666;">{{.At}}</small>
    </div>
    {{- else}}
    <p>No history available.</p>
    {{- end}}
  </div>
  <div style="margin: 20px 0; padding: 15px; background: #fff3cd; border: 1px solid #ffeaa7; border-radius: 8px;">
    <p><strong>Action Required:</strong> Please contact the customer as soon as possible to provide personalized assistance.</p>
  </div>
  <p style="color: #666; font-size: 12px;">This is an automated message from the FAQ bot.</p>
</div>`))

var reportTmpl = template.Must(template.New("report").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #25D366;">Daily Bot Performance Report</h2>
  <p><strong>Date:</strong> {{.Date}}</p>
  <table style="width: 100%; border-collapse: collapse;">
    <tr><td>Total Conversations</td><td><strong>{{.TotalConversations}}</strong></td></tr>
    <tr><td>Messages Processed</td><td><strong>{{.TotalMessages}}</strong></td></tr>
    <tr><td>Escalation Rate</td><td><strong>{{printf "%.1f" .EscalationRate}}%</strong></td></tr>
    <tr><td>Avg Satisfaction</td><td><strong>{{printf "%.1f" .AvgSatisfaction}}</strong></td></tr>
    <tr><td>Avg Response Time</td><td><strong>{{.AvgResponseTime}}</strong></td></tr>
  </table>
  {{- if .Intents}}
  <h3>Intents</h3>
  <ul>
    {{- range .Intents}}
    <li>{{.Name}}: {{.Count}}</li>
    {{- end}}
  </ul>
  {{- end}}
  <p style="color: #666; font-size: 12px;">This is an automated daily report from the FAQ bot.</p>
</div>`))
