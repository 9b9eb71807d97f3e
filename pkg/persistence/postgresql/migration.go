package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE run_reports (
				id VARCHAR(64) PRIMARY KEY,
				client VARCHAR(255) NOT NULL,
				workflows TEXT[] NOT NULL DEFAULT '{}',
				status VARCHAR(50) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
				events JSONB
			);

			CREATE INDEX idx_run_reports_client ON run_reports(client);
			CREATE INDEX idx_run_reports_started_at ON run_reports(started_at);
		`,
	}
}
