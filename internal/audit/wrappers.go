package audit

// Convenience wrappers for the common event shapes. Each is a thin mapping
// onto LogEntry; they exist so call sites read as the action they record.

// LogAuthentication records a login attempt for the given user.
func (t *Trail) LogAuthentication(user, details string, result Result) error {
	entry := newEntry(EventAuthentication, ActionLogin, details, result)
	entry.User = user
	return t.LogEntry(entry)
}

// LogAuthorization records an access decision on a resource.
func (t *Trail) LogAuthorization(user, resource, details string, result Result) error {
	entry := newEntry(EventAuthorization, ActionAccess, details, result)
	entry.User = user
	entry.Resource = resource
	return t.LogEntry(entry)
}

// LogConfigurationChange records a modification of a configuration resource.
func (t *Trail) LogConfigurationChange(user, resource, details string, result Result) error {
	entry := newEntry(EventConfiguration, ActionModify, details, result)
	entry.User = user
	entry.Resource = resource
	return t.LogEntry(entry)
}

// LogPrivilegedOperation records an action that required elevated rights.
func (t *Trail) LogPrivilegedOperation(user string, action Action, details string, result Result) error {
	entry := newEntry(EventPrivilegedOperation, action, details, result)
	entry.User = user
	return t.LogEntry(entry)
}

// LogEncryption records an encrypt or decrypt operation. Details reference the
// credential key or resource only, never plaintext or passphrases.
func (t *Trail) LogEncryption(action Action, details string, result Result) error {
	return t.Log(EventEncryption, action, details, result)
}

// LogConnection records connection establishment or teardown to a host.
func (t *Trail) LogConnection(action Action, host, details string, result Result) error {
	entry := newEntry(EventConnection, action, details, result)
	entry.Resource = host
	return t.LogEntry(entry)
}

// LogFileAccess records a file read, write or deletion.
func (t *Trail) LogFileAccess(user, path string, action Action, result Result) error {
	entry := newEntry(EventFileAccess, action, "file access", result)
	entry.User = user
	entry.Resource = path
	return t.LogEntry(entry)
}

// LogCommandExecution records a command executed on a host. Metadata carries
// the context of the run (host, run id) as opaque strings.
func (t *Trail) LogCommandExecution(user, command string, result Result, metadata map[string]string) error {
	entry := newEntry(EventCommandExecution, ActionExecute, command, result)
	entry.User = user
	entry.Metadata = metadata
	return t.LogEntry(entry)
}
