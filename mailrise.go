/*
Package mailrise relays email to notification services.

Mailrise reads the recipients of a message and looks each one up in its
configuration. A recipient such as jobs.failure@mailrise.xyz selects the
"jobs" target and the failure notification type; the subject and body are
rendered through the target's templates and delivered to its URLs.

# Configuration

Mailrise uses a YAML configuration file (/etc/mailrise.conf) with one entry
per recipient key under "configs":
  - Templates use $name placeholders (subject, from, body, to, config, type)
  - Scalars tagged !env_var are read from the environment
  - Options under "defaults" apply to every target that leaves them unset

# Usage

Basic usage:

	mailrise check                                 # Validate the configuration
	mailrise send -t jobs@mailrise.xyz -s "Done"   # Relay stdin as the body
	mailrise send -t jobs@mailrise.xyz --dry-run   # Print notifications only
	mailrise init                                  # Write a starter config
*/
package mailrise

// Version is the current version of Mailrise
const Version = "1.0.0"

// Set via -ldflags at build time.
var (
	GitCommit = ""
	BuildDate = ""
)
