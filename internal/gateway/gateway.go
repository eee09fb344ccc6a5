package gateway

// Messenger is the surface a chat transport exposes to the rest of the
// program: a listening loop, plain-text delivery, file delivery, and a
// graceful stop.
type Messenger interface {
	Start() error
	Send(target string, text string) error
	SendFile(target string, path string, caption string) error
	Stop() error
}
