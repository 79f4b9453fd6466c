package config

// Starter is the commented file written by "tunneler init".
const Starter = `# tunneler configuration
#
# Files are layered: the per-user file is read first, then ./tunnels.yaml in
# the working directory. Later files override earlier ones per name.

common:
  # User for tunnels that do not set one. Falls back to "nobody".
  # default_user: me

tunnels:
  # Listen on local_port and forward through server to host:remote_port.
  # host defaults to localhost, i.e. the server itself.
  example-db:
    description: example database behind a bastion
    server: bastion.example.com
    host: db.internal
    remote_port: 5432
    local_port: 15432

groups:
  # Members are started together. Use name:port to override the local port.
  example:
    - example-db
`
