package version

// Version of the meshroom binaries. Release builds override it with:
//
//	go build -ldflags="-X 'github.com/BioHazard786/meshroom/internal/version.Version=v1.0.0'"
var Version = "dev"
