// Package data is the key/value surface the rest of an application uses
// to persist values.
//
//	svc, err := data.Open(ctx, data.OpenOptions{Config: cfg, ConfigPath: "config.yaml"})
//	if err != nil {
//		return err
//	}
//	defer svc.Close(ctx)
//
//	player := svc.EntityData(playerID)
//	player.Set(ctx, "coins", "75")
//	coins := player.GetOr(ctx, "coins", "0")
//
// Every operation of a disabled service returns ErrNotEnabled.
package data
