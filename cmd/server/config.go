package main

type config struct {
	Port string `yaml:"port"`

	// GatewayURL is the WebSocket endpoint the client streams responses
	// from, one prompt per connection.
	GatewayURL string `yaml:"gatewayUrl"`
}

func defaultConfig() config {
	return config{
		Port:       "8080",
		GatewayURL: "ws://localhost:8081/stream",
	}
}
