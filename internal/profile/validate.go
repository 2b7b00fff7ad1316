package profile

import (
	"fmt"
	"regexp"
)

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// maxSocketPath fits sun_path on both darwin (104 with NUL) and linux (108).
const maxSocketPath = 103

// ValidateName checks that name conforms to profile naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// Validate checks name and that the profile's daemon socket fits in a unix
// socket address under p.
func (p Paths) Validate(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if sock := p.SocketPath(name); len(sock) > maxSocketPath {
		return fmt.Errorf("profile %q: socket path %s is %d bytes, the limit is %d; shorten the name or XDG_DATA_HOME",
			name, sock, len(sock), maxSocketPath)
	}
	return nil
}
