package mocks

//go:generate mockgen -destination=./mock_stream.go -package=mocks github.com/rxtech-lab/argo-alpaca/pkg/stream Conn,Dialer
//go:generate mockgen -destination=./mock_recorder.go -package=mocks github.com/rxtech-lab/argo-alpaca/pkg/recorder Recorder
