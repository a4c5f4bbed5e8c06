package wizard

import "errors"

// Validation errors for the interactive wizard.
var (
	errNodeNameRequired = errors.New("node name is required")
	errNodeNameInvalid  = errors.New("node name must be 1-63 lowercase alphanumeric characters or hyphens, starting and ending with alphanumeric")
	errAddressRequired  = errors.New("IP address is required")
	errUsernameRequired = errors.New("username is required")
	errAuthRequired     = errors.New("a password or a private key path is required")
	errPortInvalid      = errors.New("port must be a number between 1 and 65535")
	errPathRequired     = errors.New("path is required")
)
