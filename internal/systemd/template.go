package systemd

// ServeTemplate returns the systemd unit for running the session server
// under system config. StateDirectory keeps the audit log writable under
// ProtectSystem=strict.
func ServeTemplate() string {
	return `[Unit]
Description=set-user session server
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=/usr/local/bin/setuser serve --config /etc/set-user/config.yaml --audit-log /var/lib/set-user/audit.jsonl
Restart=on-failure
RestartSec=2
StateDirectory=set-user
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
ProtectHome=true

[Install]
WantedBy=multi-user.target
`
}
