// Package mediabrowser provides a Go client for the MediaBrowser REST API
// family, the common ancestor of the Jellyfin and Emby media servers.
//
// The two servers share resource paths and DTO shapes but differ in the
// path prefix (Emby serves under /emby), the name of the authorization
// header and a handful of query parameter spellings. The client exposes those
// differences as options so one wire implementation serves both.
//
// # Basic Usage
//
//	client := mediabrowser.NewClient("http://media.local:8096",
//		mediabrowser.WithIdentity(mediabrowser.Identity{
//			Client:   "mediabridge",
//			Device:   "server",
//			DeviceID: "6f0c...",
//			Version:  "1.0.0",
//		}),
//	)
//
//	// Unauthenticated reachability probe
//	info, err := client.PublicSystemInfo(ctx)
//
//	// Authenticate, then use the token for later calls
//	var auth mediabrowser.AuthenticationResult
//	_, err = client.Do(ctx, mediabrowser.Request{
//		Method:    http.MethodPost,
//		Path:      "/Users/AuthenticateByName",
//		Body:      map[string]string{"Username": "alice", "Pw": "secret"},
//		Anonymous: true,
//	}, &auth)
//	client.SetToken(auth.AccessToken)
//
//	views, err := client.Views(ctx, auth.User.ID)
//
// # Emby
//
//	client := mediabrowser.NewClient("http://emby.local:8096",
//		mediabrowser.WithPathPrefix("/emby"),
//		mediabrowser.WithHeaderStyle(mediabrowser.HeaderStyleEmby),
//	)
//
// # Credentials in URLs
//
// URL builds media URLs that carry the token as api_key. Such URLs are meant
// for server-side fetches only and must not be handed to browsers.
package mediabrowser
