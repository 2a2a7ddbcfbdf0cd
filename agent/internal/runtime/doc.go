// Package runtime invokes the container runtime that hosts the node.
//
// Runner is the raw capability (run a binary, capture stdout, stderr and the
// exit code). ExecRunner implements it with os/exec. Docker builds the three
// invocations the exporter needs on top of a Runner:
//
//   - IsActive(ctx, name)          — docker ps -q -f name=<name>
//   - Query(ctx, name)             — docker exec <name> <status command>
//   - TailLogs(ctx, name, window)  — docker logs <name> --since=<window>
//
// Every invocation runs under its own timeout so a hung docker daemon cannot
// stall a scrape.
package runtime
