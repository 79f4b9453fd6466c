package ssh

import (
	"testing"
)

func TestParseArgs(t *testing.T) {
	cases := []struct {
		name string
		argv []string
		want Forward
	}{
		{
			name: "joined forward",
			argv: []string{"ssh", "-N", "-L2323:localhost:4545", "hiyou@aserver.aplace.net"},
			want: Forward{User: "hiyou", Server: "aserver.aplace.net", LocalPort: 2323, Host: "localhost", RemotePort: 4545},
		},
		{
			name: "as launched",
			argv: []string{"ssh", "-g", "-f", "-N", "-v", "-v", "-L1212:10.0.0.5:3434", "user@server"},
			want: Forward{User: "user", Server: "server", LocalPort: 1212, Host: "10.0.0.5", RemotePort: 3434},
		},
		{
			name: "separate value and options",
			argv: []string{"ssh", "-p", "2222", "-o", "BatchMode=yes", "-N", "-L", "127.0.0.1:80:web:8080", "-i", "/k", "ops@bastion"},
			want: Forward{User: "ops", Server: "bastion", BindAddress: "127.0.0.1", LocalPort: 80, Host: "web", RemotePort: 8080},
		},
		{
			name: "clustered flags and login option",
			argv: []string{"/usr/bin/ssh", "-gfNl", "bob", "-L", "[::1]:5000:[2001:db8::2]:5432", "db.example"},
			want: Forward{User: "bob", Server: "db.example", BindAddress: "::1", LocalPort: 5000, Host: "2001:db8::2", RemotePort: 5432},
		},
		{
			name: "first forward wins",
			argv: []string{"ssh", "-N", "-L1:a:2", "-L3:b:4", "ssh://me@host"},
			want: Forward{User: "me", Server: "host", LocalPort: 1, Host: "a", RemotePort: 2},
		},
		{
			name: "options after destination",
			argv: []string{"ssh", "-N", "alice@db.internal", "-L", "15432:localhost:5432"},
			want: Forward{User: "alice", Server: "db.internal", LocalPort: 15432, Host: "localhost", RemotePort: 5432},
		},
		{
			name: "login option after destination",
			argv: []string{"ssh", "db.internal", "-fN", "-l", "alice", "-L15432:localhost:5432"},
			want: Forward{User: "alice", Server: "db.internal", LocalPort: 15432, Host: "localhost", RemotePort: 5432},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseArgs(tc.argv)
			if err != nil {
				t.Fatalf("ParseArgs error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %#v\nwant %#v", got, tc.want)
			}
		})
	}
}

func TestParseArgs_Rejects(t *testing.T) {
	for _, argv := range [][]string{
		nil,
		{"ssh", "-N", "-L3434:localhost:1212", "server.aplace.net"},
		{"ssh", "-N", "-D", "1080", "me@host"},
		{"ssh", "-N", "-L", "/tmp/sock:/remote/sock", "me@host"},
		{"ssh", "-N", "-Lx:host:1", "me@host"},
		{"ssh", "-N", "-L1:host:y", "me@host"},
		{"ssh", "-N", "-L"},
		{"ssh", "-N", "-L1:h:2"},
		{"ssh", "-N", "me@host", "sleep", "-L1:h:2"},
	} {
		if f, err := ParseArgs(argv); err == nil {
			t.Fatalf("ParseArgs(%q) = %#v, expected error", argv, f)
		}
	}
}

func TestParseArgsInvertsBuildArgs(t *testing.T) {
	f := Forward{User: "u", Server: "s.example", LocalPort: 15432, Host: "db", RemotePort: 5432}
	args, err := BuildArgs(f, 3, []string{"-o", "ServerAliveInterval=15"})
	if err != nil {
		t.Fatalf("BuildArgs error: %v", err)
	}
	got, err := ParseArgs(append([]string{"ssh"}, args...))
	if err != nil {
		t.Fatalf("ParseArgs error: %v", err)
	}
	if got != f {
		t.Fatalf("got %#v want %#v", got, f)
	}
}

func TestNoCommand(t *testing.T) {
	for _, argv := range [][]string{
		{"ssh", "-N", "me@host"},
		{"ssh", "-fN", "-L1:h:2", "me@host"},
		{"ssh", "-gfN", "me@host"},
		{"ssh", "me@host", "-N"},
	} {
		if !NoCommand(argv) {
			t.Fatalf("NoCommand(%q) = false", argv)
		}
	}
	for _, argv := range [][]string{
		nil,
		{"ssh", "me@host"},
		{"ssh", "-o", "N", "me@host"},
		{"ssh", "-lN", "me@host"},
		{"ssh", "me@host", "grep", "-N"},
	} {
		if NoCommand(argv) {
			t.Fatalf("NoCommand(%q) = true", argv)
		}
	}
}
