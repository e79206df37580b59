package entity

// Models lists every table managed by AutoMigrate, parents first.
func Models() []any {
	return []any{
		&Bucket{},
		&File{},
		&UploadSession{},
		&Function{},
		&FunctionExecution{},
		&FunctionLog{},
		&Webhook{},
		&APIKey{},
	}
}
