// Package email delivers the HTML reminders rendered by the templates package.
//
// EmailSender has two implementations: NewPostmarkClient sends through the
// Postmark transactional API with replies routed to the support address, and
// DevSender writes each message to disk as an HTML file next to a JSON
// metadata file so reminders can be inspected locally.
//
//	sender, err := email.NewPostmarkClient(cfg)
//	if err != nil {
//	    return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "alice@example.com",
//	    Subject:  "Your video is ready",
//	    BodyHTML: html,
//	    Tag:      "video_reminder",
//	})
//
// Both implementations validate SendEmailParams before doing any I/O.
// Transport failures are joined with ErrFailedToSendEmail.
package email
