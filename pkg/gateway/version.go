package gateway

// Version is the SDK version reported to the control plane on every request.
const Version = "0.3.0"
