package chain

import "go.uber.org/zap"

// Factory mints one Client per chain, mirroring the teacher's rpc.Factory /
// NewHTTPFactory shape so the Watcher can be handed one factory per process.
type Factory interface {
	NewClient(chainID string, endpoints []string) Client
}

type httpFactory struct {
	logger *zap.Logger
}

// NewHTTPFactory returns a Factory that mints HTTP-backed Clients.
func NewHTTPFactory(logger *zap.Logger) Factory {
	return &httpFactory{logger: logger}
}

func (f *httpFactory) NewClient(chainID string, endpoints []string) Client {
	return NewClient(chainID, endpoints, f.logger)
}
