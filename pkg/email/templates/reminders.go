package templates

import (
	"fmt"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/drip/pkg/reminder"
)

// Data is what every reminder template renders from.
type Data struct {
	RecipientName string
	Payload       string // a link for campaign stages, a date/time for appointment reminders
}

// Template is a rendered reminder: subject plus HTML body component.
type Template struct {
	Subject string
	Body    templ.Component
}

// ForStage returns the template of a stage.
func ForStage(stage reminder.Stage, data Data) (Template, error) {
	build, ok := stageTemplates[stage]
	if !ok {
		return Template{}, fmt.Errorf("%w: no email template for %q", reminder.ErrUnknownStage, stage)
	}
	return build(data), nil
}

var stageTemplates = map[reminder.Stage]func(Data) Template{
	reminder.StageVideoReminder:       VideoReminder,
	reminder.StageCheckingIn:          CheckingIn,
	reminder.StageFinalReminder:       FinalReminder,
	reminder.StageTestimonial1:        Testimonial(1),
	reminder.StageTestimonial2:        Testimonial(2),
	reminder.StageTestimonial3:        Testimonial(3),
	reminder.StageAppointmentReminder: AppointmentReminder,
}

func VideoReminder(d Data) Template {
	const subject = "Your personal video is waiting"
	return Template{
		Subject: subject,
		Body: layout(subject, join(
			paragraph(Greeting(d.RecipientName)),
			paragraph("We recorded a short video walking through your options. It takes less than five minutes to watch."),
			button("Watch the video", d.Payload),
		)),
	}
}

func CheckingIn(d Data) Template {
	const subject = "Just checking in"
	return Template{
		Subject: subject,
		Body: layout(subject, join(
			paragraph(Greeting(d.RecipientName)),
			paragraph("Did you get a chance to watch your video? If you have questions, booking a short call is the quickest way to get answers."),
			button("Book a call", d.Payload),
		)),
	}
}

func FinalReminder(d Data) Template {
	const subject = "Last reminder about your consultation"
	return Template{
		Subject: subject,
		Body: layout(subject, join(
			paragraph(Greeting(d.RecipientName)),
			paragraph("This is our last reminder. Your spot is still open if you would like to talk it through."),
			button("Book your consultation", d.Payload),
		)),
	}
}

// Testimonial returns the template of the n-th testimonial request.
func Testimonial(n int) func(Data) Template {
	subjects := map[int]string{
		1: "How did we do?",
		2: "A quick favour",
		3: "Last chance to share your experience",
	}
	lines := map[int]string{
		1: "Thank you for choosing us. Would you share a few words about your experience?",
		2: "Your feedback helps others decide. It only takes a minute.",
		3: "We will not ask again. If you have a moment, your testimonial would mean a lot to us.",
	}
	return func(d Data) Template {
		subject := subjects[n]
		return Template{
			Subject: subject,
			Body: layout(subject, join(
				paragraph(Greeting(d.RecipientName)),
				paragraph(lines[n]),
				button("Leave a testimonial", d.Payload),
			)),
		}
	}
}

func AppointmentReminder(d Data) Template {
	const subject = "Your appointment is coming up"
	return Template{
		Subject: subject,
		Body: layout(subject, join(
			paragraph(Greeting(d.RecipientName)),
			paragraph("This is a reminder of your appointment on "+d.Payload+"."),
			paragraph("If you need to reschedule, just reply to this email."),
		)),
	}
}

// SMSText is the short message sent for SMS-enabled stages.
func SMSText(stage reminder.Stage, d Data) (string, error) {
	switch stage {
	case reminder.StageFinalReminder:
		return "Last reminder: your consultation spot is still open. Book here: " + d.Payload, nil
	case reminder.StageAppointmentReminder:
		return "Reminder: your appointment is on " + d.Payload + ". Reply to this email's sender to reschedule.", nil
	}
	return "", fmt.Errorf("%w: no sms text for %q", reminder.ErrUnknownStage, stage)
}
