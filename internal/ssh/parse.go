package ssh

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errNoForward     = errors.New("no -L forward")
	errNoDestination = errors.New("no user@server destination")
)

// ssh options that consume the following argument.
const argOptions = "BbcDEeFIiJLlmOoPpQRSWw"

// ParseArgs recovers the first local forward and its destination from an ssh
// command line. argv[0] is the program name. The user must be known, either
// from user@server or from -l.
func ParseArgs(argv []string) (Forward, error) {
	var (
		f         Forward
		spec      string
		loginUser string
	)
	dest, err := walkArgs(argv, func(opt byte, val string) {
		switch opt {
		case 'L':
			if spec == "" {
				spec = val
			}
		case 'l':
			loginUser = val
		}
	})
	if err != nil {
		return Forward{}, err
	}

	if spec == "" {
		return Forward{}, errNoForward
	}
	if err := parseSpec(spec, &f); err != nil {
		return Forward{}, err
	}

	dest = strings.TrimPrefix(dest, "ssh://")
	if at := strings.LastIndex(dest, "@"); at >= 0 {
		f.User, f.Server = dest[:at], dest[at+1:]
	} else {
		f.User, f.Server = loginUser, dest
	}
	if f.User == "" || f.Server == "" {
		return Forward{}, errNoDestination
	}
	return f, nil
}

// NoCommand reports whether argv carries -N, alone or inside a cluster such
// as -fN.
func NoCommand(argv []string) bool {
	found := false
	_, _ = walkArgs(argv, func(opt byte, _ string) {
		if opt == 'N' {
			found = true
		}
	})
	return found
}

// walkArgs calls fn for every option in argv[1:] and returns the
// destination. Options are accepted before and after the destination; the
// next bare word after it starts the remote command and ends the walk. Flags
// may be clustered (-gfN); an option taking a value ends the cluster and
// uses the rest of the word or the next argument. fn gets "" for flags.
func walkArgs(argv []string, fn func(opt byte, val string)) (string, error) {
	if len(argv) == 0 {
		return "", nil
	}
	var dest string
	args := argv[1:]
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if dest == "" && i+1 < len(args) {
				dest = args[i+1]
			}
			break
		}
		if !strings.HasPrefix(a, "-") || a == "-" {
			if dest != "" {
				break
			}
			dest = a
			continue
		}

		for j := 1; j < len(a); j++ {
			opt := a[j]
			if !strings.ContainsRune(argOptions, rune(opt)) {
				fn(opt, "")
				continue
			}
			val := a[j+1:]
			if val == "" {
				if i+1 >= len(args) {
					return dest, fmt.Errorf("option -%c needs a value", opt)
				}
				i++
				val = args[i]
			}
			fn(opt, val)
			break
		}
	}
	return dest, nil
}

func parseSpec(spec string, f *Forward) error {
	parts := splitSpec(spec)
	switch len(parts) {
	case 3:
	case 4:
		f.BindAddress, parts = parts[0], parts[1:]
	default:
		return fmt.Errorf("unsupported forward %q", spec)
	}

	local, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("forward %q: invalid local port", spec)
	}
	remote, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("forward %q: invalid remote port", spec)
	}
	f.LocalPort, f.Host, f.RemotePort = local, parts[1], remote
	return nil
}

// splitSpec splits on colons outside square brackets and strips the brackets.
func splitSpec(spec string) []string {
	var (
		parts []string
		cur   strings.Builder
		depth int
	)
	for _, r := range spec {
		switch {
		case r == '[':
			depth++
		case r == ']' && depth > 0:
			depth--
		case r == ':' && depth == 0:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(parts, cur.String())
}
