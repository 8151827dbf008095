package catalog

import "taskpilot/runtime"

// defaultCatalog is the built-in template set written to a fresh database so
// first runs work without any authored catalog. Selector values target the
// Gmail and Google layouts the templates automate.
func defaultCatalog() *Snapshot {
	snap := &Snapshot{
		byID:      make(map[string]*runtime.Template),
		selectors: make(map[string]*runtime.ElementSelector),
	}

	snap.categories = []Category{
		{ID: "email", Name: "Email Operations", Description: "Email composition, sending, and management"},
		{ID: "web", Name: "Web Browsing", Description: "Web navigation and interaction"},
		{ID: "file", Name: "File Operations", Description: "File creation, editing, and management"},
		{ID: "app", Name: "Application Control", Description: "Application launching and control"},
		{ID: "search", Name: "Search Operations", Description: "Search and information retrieval"},
	}

	templates := []*runtime.Template{
		{
			TaskID:      "email_compose",
			CategoryID:  "email",
			Name:        "Compose Email",
			Keywords:    "email send compose mail message write",
			Description: "Compose and send an email",
			Steps: []runtime.Step{
				{Order: 1, Action: runtime.ActionNavigate, Target: "url", Value: "https://gmail.com", Description: "Navigate to Gmail"},
				{Order: 2, Action: runtime.ActionWait, Target: "page_load", Value: "3", Description: "Wait for inbox to load"},
				{Order: 3, Action: runtime.ActionClick, Target: "compose_button", Description: "Click compose button"},
				{Order: 4, Action: runtime.ActionTypeText, Target: "recipient_field", Value: "{recipient_email}", Description: "Enter recipient email"},
				{Order: 5, Action: runtime.ActionTypeText, Target: "subject_field", Value: "{email_subject}", Description: "Enter email subject", Condition: `email_subject != nil`},
				{Order: 6, Action: runtime.ActionTypeText, Target: "message_body", Description: "Enter message body"},
				{Order: 7, Action: runtime.ActionClick, Target: "send_button", Description: "Send the email"},
			},
		},
		{
			TaskID:      "web_search",
			CategoryID:  "search",
			Name:        "Search Web",
			Keywords:    "search google find look query",
			Description: "Search for information on the web",
			Steps: []runtime.Step{
				{Order: 1, Action: runtime.ActionNavigate, Target: "url", Value: "https://google.com", Description: "Navigate to Google"},
				{Order: 2, Action: runtime.ActionTypeText, Target: "search_box", Value: "{search_query}", Description: "Enter search query"},
			},
		},
		{
			TaskID:      "web_navigate",
			CategoryID:  "web",
			Name:        "Navigate Website",
			Keywords:    "navigate website browse open visit go",
			Description: "Navigate to a specific website",
			Steps: []runtime.Step{
				{Order: 1, Action: runtime.ActionNavigate, Target: "url", Value: "{target_url}", Description: "Navigate to target website"},
				{Order: 2, Action: runtime.ActionWait, Target: "page_load", Description: "Wait for page to load"},
			},
		},
		// file_create and app_open ship without steps: they are matchable but
		// not yet executable, and planning them reports the empty-template
		// reason instead of starting a run.
		{
			TaskID:      "file_create",
			CategoryID:  "file",
			Name:        "Create File",
			Keywords:    "create file new document write",
			Description: "Create a new file or document",
		},
		{
			TaskID:      "app_open",
			CategoryID:  "app",
			Name:        "Open Application",
			Keywords:    "open launch start application program",
			Description: "Open an application or program",
		},
	}
	for _, t := range templates {
		snap.templates = append(snap.templates, t)
		snap.byID[t.TaskID] = t
	}

	selectors := []*runtime.ElementSelector{
		{ElementID: "compose_button", Kind: runtime.SelectorXPath, Value: `//div[@role="button" and contains(text(), "Compose")]`, Description: "Gmail compose button"},
		{ElementID: "recipient_field", Kind: runtime.SelectorXPath, Value: `//input[@aria-label="To"]`, Description: "Email recipient field"},
		{ElementID: "subject_field", Kind: runtime.SelectorXPath, Value: `//input[@name="subjectbox"]`, Description: "Email subject field"},
		{ElementID: "message_body", Kind: runtime.SelectorXPath, Value: `//div[@aria-label="Message Body"]`, Description: "Email message body"},
		{ElementID: "send_button", Kind: runtime.SelectorXPath, Value: `//div[@role="button" and contains(text(), "Send")]`, Description: "Send email button"},
		{ElementID: "search_box", Kind: runtime.SelectorName, Value: "q", Description: "Google search box"},
	}
	for _, sel := range selectors {
		snap.addSelector(sel)
	}

	return snap
}
