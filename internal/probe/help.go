package probe

// helpText mirrors what ParseArgs accepts. Kept as one literal so the
// output is easy to eyeball against the parser.
const helpText = `Syntax: docprobe [options] <read|write>...

The arguments "read" and "write" may be specified one or more
times each, and each occurrence causes the harness to perform
one read or one write operation against the target document,
in the order given.

The target database is taken from the environment:
  DOCPROBE_URL          websocket RPC endpoint (default ws://localhost:8000/rpc)
  DOCPROBE_NS           namespace to use (default diagnostics)
  DOCPROBE_DB           database to use (default probe)
  DOCPROBE_USER         username to sign in with (default root)
  DOCPROBE_PASS         password to sign in with (default root)
  DOCPROBE_GET_TIMEOUT  read deadline, e.g. 10s or 500ms (default 10s)
  DOCPROBE_SET_TIMEOUT  write deadline; 0 disables it (default 0)

Options:
  -h/--help
    Print this help message and exit.
  -k/--key
    Use this key when writing.
  -v/--value
    Use this value when writing.
  -e/--emulator
    Connect to a local emulator at ws://localhost:8080/rpc.
  -d/--debug
    Enable debug logging.

Examples:

Example 1: Perform a read followed by a write:
docprobe read write

Example 2: Perform a write with a custom key/value pair:
docprobe -k city -v Dallas write

Example 3: Enable debug logging:
docprobe --debug read write
`
