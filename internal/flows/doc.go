// Package flows holds the orchestration behind every Engine operation:
// login, token issuance, refresh rotation, the authorization guard and
// online-session management.
//
// Each Run function takes a dependency struct of funcs and narrow store
// interfaces and returns a result carrying a failure kind. The root package
// maps kinds to its exported sentinel errors and owns audit and metrics, so
// flows never import it.
package flows
