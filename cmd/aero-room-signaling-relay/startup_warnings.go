package main

import (
	"log/slog"
	"time"

	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/room-signaling-relay/internal/room"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if containsString(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.DuplicatePeerIDPolicy == room.DuplicateReplace {
		logger.Warn("startup security warning: DUPLICATE_PEER_ID_POLICY=replace lets any client that knows a peer id displace that peer",
			"warning_code", "duplicate_peer_id_replace_in_prod",
			"duplicate_peer_id_policy", cfg.DuplicatePeerIDPolicy,
			"mode", cfg.Mode,
		)
	}

	if err := cfg.ICEConfigError(); err != nil {
		logger.Warn("startup security warning: ICE server configuration is invalid; /webrtc/ice and /readyz will fail",
			"warning_code", "ice_config_invalid",
			"err", err,
			"mode", cfg.Mode,
		)
	}

	if cfg.TURNREST.Enabled() && !hasTURNServer(cfg) {
		logger.Warn("startup security warning: TURN_REST_SHARED_SECRET is set but no TURN URLs are configured (credentials will never be issued)",
			"warning_code", "turn_rest_without_turn_urls",
			"ice_servers", len(cfg.ICEServers),
			"mode", cfg.Mode,
		)
	}

	if cfg.MaxSignalingMessageBytes > 1<<20 { // 1MiB
		logger.Warn("startup security warning: MAX_SIGNALING_MESSAGE_BYTES is very large (increases per-message allocation risk; SDP rarely exceeds a few KiB)",
			"warning_code", "max_signaling_message_large",
			"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
			"mode", cfg.Mode,
		)
	}
	if cfg.MaxSignalingMessagesPerSecond > 1000 {
		logger.Warn("startup security warning: MAX_SIGNALING_MESSAGES_PER_SECOND is very large (one peer can flood its room with chat)",
			"warning_code", "signaling_rate_limit_large",
			"max_signaling_messages_per_second", cfg.MaxSignalingMessagesPerSecond,
			"mode", cfg.Mode,
		)
	}
	if cfg.SignalingWSPongTimeout > 5*time.Minute {
		logger.Warn("startup security warning: SIGNALING_WS_PONG_TIMEOUT is very large (dead connections hold room slots for longer)",
			"warning_code", "signaling_pong_timeout_large",
			"signaling_ws_pong_timeout", cfg.SignalingWSPongTimeout,
			"mode", cfg.Mode,
		)
	}
}

func hasTURNServer(cfg config.Config) bool {
	for _, s := range cfg.ICEServers {
		if config.ICEServerHasTURNURL(s) {
			return true
		}
	}
	return false
}

func containsString(xs []string, v string) bool {
	for _, s := range xs {
		if s == v {
			return true
		}
	}
	return false
}
